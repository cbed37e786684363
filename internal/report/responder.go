package report

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

var (
	// ErrNotFound はファイルが存在しないか配信できない場合に返される
	ErrNotFound = errors.New("ファイルが見つかりません")
	// ErrTraversal はパスがレポートルートの外を指す場合に返される
	ErrTraversal = errors.New("レポートルート外へのアクセスは拒否されました")
)

// Responder はレポートルート配下のファイルを解決する
// 複数のゴルーチンから同時に使用できる
type Responder struct {
	root  *os.Root
	dir   string
	index string
}

// Asset は開かれた配信対象のファイル
// 呼び出し側で Close すること
type Asset struct {
	Name        string // ルートからのスラッシュ区切りの相対パス
	Size        int64
	ModTime     time.Time
	ContentType string

	file *os.File
}

// New は dir をルートとする Responder を作成する
// index は "/" やディレクトリに対して返すファイル名
func New(dir, index string) (*Responder, error) {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("レポートルートを開けません: %w", err)
	}

	info, err := root.Stat(".")
	if err != nil {
		root.Close()
		return nil, fmt.Errorf("レポートルートを参照できません: %w", err)
	}
	if !info.IsDir() {
		root.Close()
		return nil, fmt.Errorf("レポートルートがディレクトリではありません: %s", dir)
	}

	return &Responder{root: root, dir: dir, index: index}, nil
}

// Dir はレポートルートのパスを返す
func (r *Responder) Dir() string {
	return r.dir
}

// Close はレポートルートのハンドルを解放する
func (r *Responder) Close() error {
	return r.root.Close()
}

// Open はURLパスを解決してファイルを開く
// 空のパスと "/" はインデックスファイル、ディレクトリはその中のインデックスファイルになる
func (r *Responder) Open(urlPath string) (*Asset, error) {
	name, err := cleanName(urlPath)
	if err != nil {
		return nil, err
	}
	if name == "." {
		name = r.index
	}

	f, info, err := r.open(name)
	if err != nil {
		return nil, err
	}

	if info.IsDir() {
		f.Close()
		name = path.Join(name, r.index)
		f, info, err = r.open(name)
		if err != nil {
			return nil, err
		}
		// インデックス自体がディレクトリなら配信しない
		if info.IsDir() {
			f.Close()
			return nil, ErrNotFound
		}
	}

	contentType, err := detectContentType(name, f)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &Asset{
		Name:        name,
		Size:        info.Size(),
		ModTime:     info.ModTime(),
		ContentType: contentType,
		file:        f,
	}, nil
}

// Read は io.Reader を実装する
func (a *Asset) Read(p []byte) (int, error) {
	return a.file.Read(p)
}

// Seek は io.Seeker を実装する
func (a *Asset) Seek(offset int64, whence int) (int64, error) {
	return a.file.Seek(offset, whence)
}

// Close はファイルを閉じる
func (a *Asset) Close() error {
	return a.file.Close()
}

// open はルート内のファイルを開き、エラーを ErrNotFound / ErrTraversal に変換する
func (r *Responder) open(name string) (*os.File, fs.FileInfo, error) {
	f, err := r.root.Open(filepath.FromSlash(name))
	if err != nil {
		return nil, nil, classify(name, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, classify(name, err)
	}

	return f, info, nil
}

// cleanName はURLパスをルートからの相対名に変換する
// ".." を含むパスは正規化される前に拒否する
func cleanName(urlPath string) (string, error) {
	if strings.ContainsRune(urlPath, 0) {
		return "", ErrTraversal
	}

	name := strings.TrimPrefix(urlPath, "/")
	for _, seg := range strings.FieldsFunc(name, isSeparator) {
		if seg == ".." {
			return "", ErrTraversal
		}
	}

	name = path.Clean("/" + strings.ReplaceAll(name, `\`, "/"))[1:]
	if name == "" {
		return ".", nil
	}
	if !filepath.IsLocal(filepath.FromSlash(name)) {
		return "", ErrTraversal
	}
	return name, nil
}

func isSeparator(r rune) bool {
	return r == '/' || r == '\\'
}

// classify はファイルシステムのエラーを分類する
func classify(name string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENOTDIR):
		return ErrNotFound
	case errors.Is(err, fs.ErrPermission):
		return ErrNotFound
	case isEscape(err):
		return ErrTraversal
	default:
		return fmt.Errorf("%s を開けません: %w", name, err)
	}
}

// isEscape は os.Root がルート外へのシンボリックリンクを拒否したかを判定する
func isEscape(err error) bool {
	var pathErr *fs.PathError
	if !errors.As(err, &pathErr) {
		return false
	}
	return strings.Contains(pathErr.Err.Error(), "escapes from parent")
}

// detectContentType は拡張子からContent-Typeを推定する
// 拡張子で判定できない場合は先頭を読み取って判定し、読み取り位置を戻す
func detectContentType(name string, f *os.File) (string, error) {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct, nil
	}

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return "", fmt.Errorf("%s のContent-Typeを判定できません: %w", name, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("%s の読み取り位置を戻せません: %w", name, err)
	}
	return mt.String(), nil
}
