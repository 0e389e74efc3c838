package validator

import (
	"bytes"
	"encoding/json"
)

// Загруженные схемы разнородны и написаны пользователями, поэтому синтез
// тотален: непонятная схема дает пустой вход, непонятный тип — null.
// Осмысленный FAIL должен прийти из вызова точки входа, а не из разбора схемы

// Synthesize строит синтетический вход по документу схемы и возвращает
// контракт выходных полей, если схема его объявляет. Поддерживаются два
// диалекта:
//
//  1. обертка {"input": {поле: тип}, "output": {поле: тип}} с типами
//     float/int/str/bool и одним уровнем вложенности
//  2. структурный ({"properties": {...}}), где поле берет example как есть,
//     иначе значение по умолчанию из type; контракт не возвращается
func Synthesize(raw []byte) (map[string]any, map[string]any) {
	var schema map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&schema); err != nil {
		return map[string]any{}, nil
	}

	// 1) обертка: { "input": {...}, "output": {...} }
	if input, ok := schema["input"]; ok {
		if inputMap, ok := input.(map[string]any); ok {
			// внутри "input" может лежать структурная схема
			if _, has := inputMap["properties"]; has {
				return buildFromJSONSchema(inputMap)
			}
		}
		return buildFromCustomSchema(schema)
	}

	// 2) структурная схема верхнего уровня
	if _, ok := schema["properties"]; ok {
		return buildFromJSONSchema(schema)
	}
	if t, _ := schema["type"].(string); t == "object" {
		return buildFromJSONSchema(schema)
	}

	// 3) запасной вариант
	return map[string]any{}, nil
}

func buildFromCustomSchema(schema map[string]any) (map[string]any, map[string]any) {
	inputSchema, _ := schema["input"].(map[string]any)

	dummy := make(map[string]any, len(inputSchema))
	for key, typ := range inputSchema {
		switch t := typ.(type) {
		case string:
			dummy[key] = valueForSimpleType(t)
		case map[string]any:
			nested := make(map[string]any, len(t))
			for k2, t2 := range t {
				if s, ok := t2.(string); ok {
					nested[k2] = valueForSimpleType(s)
				} else {
					nested[k2] = nil
				}
			}
			dummy[key] = nested
		default:
			dummy[key] = nil
		}
	}

	contract, _ := schema["output"].(map[string]any)
	return dummy, contract
}

func buildFromJSONSchema(schema map[string]any) (map[string]any, map[string]any) {
	props, _ := schema["properties"].(map[string]any)

	data := make(map[string]any, len(props))
	for name, p := range props {
		prop, ok := p.(map[string]any)
		if !ok {
			data[name] = "example"
			continue
		}

		// явный example имеет приоритет над типом
		if example, has := prop["example"]; has && example != nil {
			data[name] = example
			continue
		}

		ptype, _ := prop["type"].(string)
		switch ptype {
		case "string":
			data[name] = "example text"
		case "number":
			data[name] = json.Number("1.0")
		case "integer":
			data[name] = json.Number("1")
		case "boolean":
			data[name] = true
		case "object":
			data[name] = map[string]any{}
		case "array":
			data[name] = []any{}
		default:
			data[name] = "example"
		}
	}

	return data, nil
}

// Числа представлены как json.Number, чтобы различие int/float
// переживало сериализацию на входе точки входа (1 против 1.0)
func valueForSimpleType(typ string) any {
	switch typ {
	case "float":
		return json.Number("1.0")
	case "int":
		return json.Number("42")
	case "str":
		return "example"
	case "bool":
		return true
	case "object":
		return map[string]any{}
	default:
		return nil
	}
}
