package screenshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/qs3c/apply_go_server/internal/pkg/oss"
)

// LocalPrefix 本地存储的截图引用前缀
const LocalPrefix = "local://"

// Name 截图文件名 app_<id>_<stage>_<unix>.png
func Name(applicationID int64, stage string, at time.Time) string {
	return fmt.Sprintf("app_%d_%s_%d.png", applicationID, stage, at.Unix())
}

// Store 配置了 OSS 时上传，否则写入本地目录
type Store struct {
	dir string
	oss *oss.Client
	now func() time.Time
}

func NewStore(dir string, ossClient *oss.Client) *Store {
	return &Store{dir: dir, oss: ossClient, now: time.Now}
}

func (s *Store) Save(_ context.Context, applicationID int64, stage string, png []byte) (string, error) {
	name := Name(applicationID, stage, s.now())

	if s.oss != nil {
		ref, err := s.oss.UploadScreenshot(applicationID, name, png)
		if err == nil {
			return ref, nil
		}
		// OSS 不可用时退回本地存储
		zap.L().Warn("upload screenshot failed, saving locally",
			zap.Int64("application_id", applicationID),
			zap.Error(err),
		)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "screenshot: create dir %s", s.dir)
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), png, 0o644); err != nil {
		return "", eris.Wrapf(err, "screenshot: write %s", name)
	}
	return LocalPrefix + name, nil
}

// LocalPath 把 local:// 引用解析为目录内的文件路径
func LocalPath(dir, ref string) (string, bool) {
	if !strings.HasPrefix(ref, LocalPrefix) {
		return "", false
	}
	name := filepath.Base(strings.TrimPrefix(ref, LocalPrefix))
	if name == "." || name == string(filepath.Separator) {
		return "", false
	}
	return filepath.Join(dir, name), true
}

// Cleanup 删除本地目录中早于 cutoff 的截图，返回删除数量
func Cleanup(dir string, cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, eris.Wrapf(err, "screenshot: read dir %s", dir)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".png") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
				zap.L().Warn("remove screenshot failed", zap.String("name", entry.Name()), zap.Error(err))
				continue
			}
			removed++
		}
	}
	return removed, nil
}
