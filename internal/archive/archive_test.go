package archive

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	name string
	body string
}

func buildZip(t *testing.T, entries ...entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, e := range entries {
		fw, err := w.Create(e.name)
		require.NoError(t, err)
		if e.body != "" {
			_, err = fw.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestExtractLogs_ArchiveOrder(t *testing.T) {
	data := buildZip(t,
		entry{name: "1_test.txt", body: "FAIL src/a.test.js"},
		entry{name: "test/"},
		entry{name: "test/2_Run tests.txt", body: "step log"},
		entry{name: "0_build.txt", body: "build ok"},
	)

	docs, err := ExtractLogs(data)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "1_test.txt", docs[0].Name)
	assert.Equal(t, "FAIL src/a.test.js", docs[0].Text)
	assert.Equal(t, "test/2_Run tests.txt", docs[1].Name)
	assert.Equal(t, "0_build.txt", docs[2].Name)
}

func TestExtractLogs_Corrupt(t *testing.T) {
	_, err := ExtractLogs([]byte("definitely not a zip"))
	require.Error(t, err)

	_, err = ExtractLogs(nil)
	require.Error(t, err)
}

func TestPreferJobLogs(t *testing.T) {
	docs := []Document{
		{Name: "0_build.txt"},
		{Name: "build/1_Set up job.txt"},
		{Name: "1_test.txt"},
		{Name: "test/3_Run.txt"},
	}
	got := PreferJobLogs(docs)
	assert.Equal(t, []Document{{Name: "0_build.txt"}, {Name: "1_test.txt"}}, got)

	stepsOnly := []Document{{Name: "build/1.txt"}, {Name: "test/2.txt"}}
	assert.Equal(t, stepsOnly, PreferJobLogs(stepsOnly))
}

func TestTexts(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, Texts([]Document{{Text: "a"}, {Text: "b"}}))
	assert.Empty(t, Texts(nil))
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()

	plain := filepath.Join(dir, "job.log")
	require.NoError(t, os.WriteFile(plain, []byte("not ok 1 a.js works"), 0644))

	docs, err := ReadFile(plain)
	require.NoError(t, err)
	assert.Equal(t, []Document{{Name: "job.log", Text: "not ok 1 a.js works"}}, docs)

	// Zip content is detected by signature regardless of extension.
	zipped := filepath.Join(dir, "logs.bin")
	require.NoError(t, os.WriteFile(zipped, buildZip(t, entry{name: "0_test.txt", body: "x"}), 0644))

	docs, err = ReadFile(zipped)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "0_test.txt", docs[0].Name)

	_, err = ReadFile(filepath.Join(dir, "missing.log"))
	require.Error(t, err)
}
