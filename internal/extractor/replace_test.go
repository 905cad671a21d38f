package extractor

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlattenCollectsPaths(t *testing.T) {
	raw := []byte(`{
		"dataList": [
			{"id": "E001", "name": "ドンキホーテ", "lines": [{"id": "L1", "text": "台詞"}]},
			{"id": "E002", "name": "グレゴール"}
		]
	}`)

	units := Flatten(raw, "Enemies.json")
	require.Len(t, units, 3)
	assert.Equal(t, "dataList.0.name", units[0].Path)
	assert.Equal(t, "dataList.0.lines.0.text", units[1].Path)
	assert.Equal(t, "dataList.1.name", units[2].Path)
	assert.Equal(t, "Enemies.json#L1#text", units[1].Identity())
}

func TestFlattenRootArray(t *testing.T) {
	units := Flatten([]byte(`[{"id": "A1", "text": "甲"}]`), "List.json")
	require.Len(t, units, 1)
	assert.Equal(t, "0.text", units[0].Path)
	assert.Equal(t, "List.json#A1#text", units[0].Identity())
}

func TestReplaceOnlyTouchesValues(t *testing.T) {
	source := "{\r\n  \"dataList\": [\r\n    {\"id\": \"E001\", \"hp\": 120, \"name\": \"ドンキホーテ\"}\r\n  ]\r\n}\r\n"
	raw := []byte(source)
	units := Flatten(raw, "Enemies.json")
	require.Len(t, units, 1)

	out, applied, err := Replace(raw, units, map[string]string{
		"Enemies.json#E001#name": "堂吉诃德",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	// 排版、键序、CRLF 都不该动
	want := strings.Replace(source, "ドンキホーテ", "堂吉诃德", 1)
	assert.Equal(t, want, string(out))
}

func TestReplaceSkipsUnknownIdentity(t *testing.T) {
	raw := []byte(`{"dataList": [{"id": "E001", "name": "ドンキホーテ"}]}`)
	units := Flatten(raw, "Enemies.json")

	out, applied, err := Replace(raw, units, map[string]string{
		"Other.json#X#name": "不相干",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, applied)
	assert.Equal(t, string(raw), string(out))
}

func TestReplaceEscapedKeys(t *testing.T) {
	raw := []byte(`{"id": "K1", "a.b": "テキスト"}`)
	units := Flatten(raw, "Odd.json")
	require.Len(t, units, 1)
	assert.Equal(t, `a\.b`, units[0].Path)
	assert.Equal(t, "a.b", units[0].FieldName)

	out, applied, err := Replace(raw, units, map[string]string{
		"Odd.json#K1#a.b": "文本",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	// 含点的键原位替换，不得拆成嵌套对象
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &doc))
	assert.Equal(t, "文本", doc["a.b"])
	_, nested := doc["a"]
	assert.False(t, nested)
}

func TestReplaceEscapesControlCharacters(t *testing.T) {
	raw := []byte(`{"id": "K1", "text": "原文"}`)
	units := Flatten(raw, "Ctl.json")

	out, applied, err := Replace(raw, units, map[string]string{
		"Ctl.json#K1#text": "第一行\n\"第二行\"",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	var doc map[string]string
	require.NoError(t, json.Unmarshal(out, &doc))
	assert.Equal(t, "第一行\n\"第二行\"", doc["text"])
}
