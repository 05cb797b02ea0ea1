package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// JSONB 通用 JSON 对象类型,postgres 下映射 jsonb,sqlite 下按文本存取
type JSONB map[string]interface{}

// JSONBStringArray 字符串数组的 JSONB 类型,用于快照与订单的物品码列表
type JSONBStringArray []string

// 实现 Scanner 接口
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("类型断言失败: 不是 []byte 或 string")
	}
	return json.Unmarshal(bytes, j)
}

// 实现 Valuer 接口
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// JSONBStringArray 的 Scanner 接口实现
func (j *JSONBStringArray) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("类型断言失败: 不是 []byte 或 string")
	}
	return json.Unmarshal(bytes, j)
}

// JSONBStringArray 的 Valuer 接口实现
func (j JSONBStringArray) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Contains 判断数组是否包含指定物品码
func (j JSONBStringArray) Contains(code string) bool {
	for _, c := range j {
		if c == code {
			return true
		}
	}
	return false
}
