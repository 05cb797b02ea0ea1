/*
 * @module utils/encoding_test
 * @description 编码工具单元测试,覆盖 BOM 处理与 GBK 识别转码
 * @architecture 测试层
 * @documentReference ai_docs/import_formats.md
 * @refs encoding.go
 */

package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripBOM(t *testing.T) {
	withBOM := append([]byte{0xEF, 0xBB, 0xBF}, []byte("bin_id,zone")...)

	assert.Equal(t, []byte("bin_id,zone"), StripBOM(withBOM))
	assert.Equal(t, []byte("bin_id,zone"), StripBOM([]byte("bin_id,zone")))
	assert.Empty(t, StripBOM([]byte{0xEF, 0xBB, 0xBF}))
}

func TestWithUTF8BOM(t *testing.T) {
	data := []byte("id,date\n0001,2025-03-01\n")

	out := WithUTF8BOM(data)
	assert.Equal(t, []byte{0xEF, 0xBB, 0xBF}, out[:3])
	assert.Equal(t, data, StripBOM(out))

	// 已带 BOM 不重复添加
	assert.Equal(t, out, WithUTF8BOM(out))
}

func TestEnsureUTF8_合法UTF8原样返回(t *testing.T) {
	data := []byte("bin_id,zone\nA-01-01,华东一区\n")

	out, err := EnsureUTF8(data)

	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestEnsureUTF8_去除BOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("ts,bin_id")...)

	out, err := EnsureUTF8(data)

	require.NoError(t, err)
	assert.Equal(t, []byte("ts,bin_id"), out)
}

func TestEnsureUTF8_GBK自动转码(t *testing.T) {
	original := []byte("库位,区域\nA-01-01,华东一区\n")
	gbkData, err := EncodeGBK(original)
	require.NoError(t, err)
	require.NotEqual(t, original, gbkData)

	out, err := EnsureUTF8(gbkData)

	require.NoError(t, err)
	assert.Equal(t, original, out)
}

func TestEncodeGBK_不支持的字符报错(t *testing.T) {
	_, err := EncodeGBK([]byte("盘点🚀"))

	assert.Error(t, err)
}
