package report

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newReportDir はテスト用のレポートディレクトリを作成する
// 戻り値はルートと、ルートの外に置いた秘密ファイルのパス
func newReportDir(t *testing.T) (string, string) {
	t.Helper()

	base := t.TempDir()
	root := filepath.Join(base, "allure-report")

	files := map[string]string{
		"index.html":              "<html>report</html>",
		"app.js":                  "console.log('allure')",
		"styles.css":              "body{}",
		"data/suites.json":        `{"children":[]}`,
		"data/attachments/blob":   "%PDF-1.4\n",
		"widgets/index.html":      "<html>widgets</html>",
		"history/history.json":    "[]",
		"plugin/behaviors/x.json": "{}",
	}
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))

	secret := filepath.Join(base, "secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("secret"), 0o644))

	return root, secret
}

func newResponder(t *testing.T) (*Responder, string) {
	t.Helper()
	root, secret := newReportDir(t)
	r, err := New(root, "index.html")
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r, secret
}

func readAll(t *testing.T, a *Asset) string {
	t.Helper()
	defer a.Close()
	data, err := io.ReadAll(a)
	require.NoError(t, err)
	return string(data)
}

func TestNew(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing"), "index.html")
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = New(file, "index.html")
	assert.Error(t, err)
}

func TestOpenExistingFiles(t *testing.T) {
	r, _ := newResponder(t)

	testCases := []struct {
		path        string
		body        string
		contentType string
	}{
		{"/index.html", "<html>report</html>", "text/html"},
		{"/app.js", "console.log('allure')", "javascript"},
		{"/styles.css", "body{}", "text/css"},
		{"/data/suites.json", `{"children":[]}`, "application/json"},
		{"/history/history.json", "[]", "application/json"},
		{"data/suites.json", `{"children":[]}`, "application/json"},
		{"/./data//suites.json", `{"children":[]}`, "application/json"},
	}

	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			a, err := r.Open(tc.path)
			require.NoError(t, err)
			assert.Contains(t, a.ContentType, tc.contentType)
			assert.Equal(t, int64(len(tc.body)), a.Size)
			assert.Equal(t, tc.body, readAll(t, a))
		})
	}
}

func TestOpenRootIsIndex(t *testing.T) {
	r, _ := newResponder(t)

	for _, p := range []string{"", "/"} {
		a, err := r.Open(p)
		require.NoError(t, err)
		assert.Equal(t, "index.html", a.Name)
		assert.Equal(t, "<html>report</html>", readAll(t, a))
	}
}

func TestOpenDirectory(t *testing.T) {
	r, _ := newResponder(t)

	a, err := r.Open("/widgets")
	require.NoError(t, err)
	assert.Equal(t, "widgets/index.html", a.Name)
	assert.Equal(t, "<html>widgets</html>", readAll(t, a))

	a, err = r.Open("/widgets/")
	require.NoError(t, err)
	a.Close()

	// インデックスのないディレクトリは一覧を返さない
	_, err = r.Open("/empty")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = r.Open("/data")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenNotFound(t *testing.T) {
	r, _ := newResponder(t)

	for _, p := range []string{"/does-not-exist.html", "/data/none.json", "/index.html/extra"} {
		_, err := r.Open(p)
		assert.ErrorIs(t, err, ErrNotFound, p)
	}
}

func TestOpenTraversal(t *testing.T) {
	r, secret := newResponder(t)

	testCases := []string{
		"/../secret.txt",
		"../secret.txt",
		"/../../etc/passwd",
		"/data/../../secret.txt",
		"/data/../index.html",
		`/..\secret.txt`,
		"/index.html\x00",
		"..",
	}

	for _, p := range testCases {
		t.Run(p, func(t *testing.T) {
			a, err := r.Open(p)
			assert.ErrorIs(t, err, ErrTraversal)
			assert.Nil(t, a)
		})
	}

	// 絶対パスはルートからの相対名として扱われ、ルート外は読まない
	a, err := r.Open("/" + secret)
	if err == nil {
		body := readAll(t, a)
		assert.NotEqual(t, "secret", body)
	}
}

func TestOpenSymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("シンボリックリンクの作成に権限が必要")
	}

	root, secret := newReportDir(t)
	require.NoError(t, os.Symlink(secret, filepath.Join(root, "leak.txt")))
	require.NoError(t, os.Symlink("data/suites.json", filepath.Join(root, "suites.json")))

	r, err := New(root, "index.html")
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Open("/leak.txt")
	assert.ErrorIs(t, err, ErrTraversal)

	// ルート内へのリンクは配信する
	a, err := r.Open("/suites.json")
	require.NoError(t, err)
	assert.Equal(t, `{"children":[]}`, readAll(t, a))
}

func TestContentTypeSniffing(t *testing.T) {
	r, _ := newResponder(t)

	a, err := r.Open("/data/attachments/blob")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", a.ContentType)
	// 判定後も先頭から読める
	assert.Equal(t, "%PDF-1.4\n", readAll(t, a))
}

func TestOpenConcurrent(t *testing.T) {
	r, _ := newResponder(t)

	expected := map[string]string{
		"/index.html":       "<html>report</html>",
		"/app.js":           "console.log('allure')",
		"/styles.css":       "body{}",
		"/data/suites.json": `{"children":[]}`,
	}

	var wg sync.WaitGroup
	errs := make(chan string, 100)
	for i := 0; i < 25; i++ {
		for p, body := range expected {
			wg.Add(1)
			go func(p, body string) {
				defer wg.Done()
				a, err := r.Open(p)
				if err != nil {
					errs <- err.Error()
					return
				}
				defer a.Close()
				data, err := io.ReadAll(a)
				if err != nil || string(data) != body {
					errs <- p + ": " + string(data)
				}
			}(p, body)
		}
	}
	wg.Wait()
	close(errs)

	var failures []string
	for e := range errs {
		failures = append(failures, e)
	}
	assert.Empty(t, strings.Join(failures, "\n"))
}
