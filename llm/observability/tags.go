package observability

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
)

// Tag 是一个指标维度。Value 为 nil 表示 null。
type Tag struct {
	Key   string
	Value any
}

// TagSet 有序的指标维度集合。
// With 返回新的集合，原集合不受影响，因此同一基础集合可以被多次特化。
type TagSet struct {
	tags []Tag
}

// NewTagSet 按给定顺序构造 TagSet；重复的 key 以后者为准。
func NewTagSet(tags ...Tag) TagSet {
	var ts TagSet
	for _, t := range tags {
		ts = ts.With(t.Key, t.Value)
	}
	return ts
}

// With 返回设置了 key 的新集合。已存在的 key 原位替换，保持顺序。
func (ts TagSet) With(key string, value any) TagSet {
	out := ts.Clone()
	for i := range out.tags {
		if out.tags[i].Key == key {
			out.tags[i].Value = value
			return out
		}
	}
	out.tags = append(out.tags, Tag{Key: key, Value: value})
	return out
}

// Clone 返回独立副本。
func (ts TagSet) Clone() TagSet {
	if len(ts.tags) == 0 {
		return TagSet{}
	}
	out := make([]Tag, len(ts.tags))
	copy(out, ts.tags)
	return TagSet{tags: out}
}

// Get 返回 key 对应的值。
func (ts TagSet) Get(key string) (any, bool) {
	for _, t := range ts.tags {
		if t.Key == key {
			return t.Value, true
		}
	}
	return nil, false
}

// Len 返回维度个数（包括 null 值）。
func (ts TagSet) Len() int { return len(ts.tags) }

// Tags 返回维度的副本。
func (ts TagSet) Tags() []Tag {
	return ts.Clone().tags
}

// Attributes 转换为 OTel 属性。OTel 没有 null 属性，nil 值被跳过。
func (ts TagSet) Attributes() []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(ts.tags))
	for _, t := range ts.tags {
		if kv, ok := toAttribute(t.Key, t.Value); ok {
			attrs = append(attrs, kv)
		}
	}
	return attrs
}

func toAttribute(key string, value any) (attribute.KeyValue, bool) {
	switch v := value.(type) {
	case nil:
		return attribute.KeyValue{}, false
	case string:
		return attribute.String(key, v), true
	case *string:
		if v == nil {
			return attribute.KeyValue{}, false
		}
		return attribute.String(key, *v), true
	case int:
		return attribute.Int(key, v), true
	case *int:
		if v == nil {
			return attribute.KeyValue{}, false
		}
		return attribute.Int(key, *v), true
	case int64:
		return attribute.Int64(key, v), true
	case float64:
		return attribute.Float64(key, v), true
	case *float64:
		if v == nil {
			return attribute.KeyValue{}, false
		}
		return attribute.Float64(key, *v), true
	case bool:
		return attribute.Bool(key, v), true
	default:
		return attribute.String(key, fmt.Sprint(v)), true
	}
}
