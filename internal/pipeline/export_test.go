package pipeline

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/dealfeed-collector/internal/collector"
)

func TestWriteJSONEmptyBatch(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestWriteJSONFields(t *testing.T) {
	t.Parallel()

	img := "https://storage.example/images/abc.jpg"
	cat := "מטבח & בית"
	rec := collector.IngestRecord{
		ID:             12,
		CreatedAt:      time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC),
		Text:           "מבצע <חם>",
		Views:          3,
		OriginItemURL:  "https://www.amazon.com/dp/B1?a=1&b=2",
		BucketImageURL: &img,
		Price:          `10 ש"ח`,
		Category:       &cat,
		ImageID:        "abc",
	}

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, []collector.IngestRecord{rec}))
	out := buf.String()

	assert.Contains(t, out, "\n    {\n        \"id\": 12,")
	assert.Contains(t, out, `"created_at": "2026-10-16T08:00:00Z"`)
	assert.Contains(t, out, `"text": "מבצע <חם>"`)
	assert.Contains(t, out, `"category": "מטבח & בית"`)
	assert.Contains(t, out, `a=1&b=2`)
	assert.NotContains(t, out, "image_id")

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	keys := make([]string, 0, len(decoded[0]))
	for k := range decoded[0] {
		keys = append(keys, k)
	}
	assert.ElementsMatch(t, []string{
		"id", "created_at", "text", "views", "origin_item_url", "bucket_image_url", "price", "category",
	}, keys)
}

func TestWriteJSONNulls(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, []collector.IngestRecord{{ID: 1, Price: NoPrice}}))
	assert.Contains(t, buf.String(), `"bucket_image_url": null`)
	assert.Contains(t, buf.String(), `"category": null`)
}

func TestExportJSONReplacesFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "out.json")
	require.NoError(t, ExportJSON(path, []collector.IngestRecord{{ID: 1}}))
	require.NoError(t, ExportJSON(path, nil))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(raw))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files are cleaned up")
}
