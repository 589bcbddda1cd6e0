package objstore

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/yungbote/chatflow-backend/internal/platform/envutil"
)

type Mode string

const (
	ModeLocal       Mode = "local"
	ModeGCS         Mode = "gcs"
	ModeGCSEmulator Mode = "gcs_emulator"
)

type Config struct {
	Mode         Mode
	Bucket       string
	EmulatorHost string
	LocalDir     string
}

func ConfigFromEnv() Config {
	return Config{
		Mode:         Mode(strings.ToLower(envutil.String("OBJECT_STORAGE_MODE", string(ModeLocal)))),
		Bucket:       envutil.String("UPLOAD_GCS_BUCKET_NAME", ""),
		EmulatorHost: envutil.String("STORAGE_EMULATOR_HOST", ""),
		LocalDir:     envutil.String("LOCAL_UPLOAD_DIR", "./data/uploads"),
	}
}

func (c Config) Validate() error {
	switch c.Mode {
	case ModeLocal:
		if strings.TrimSpace(c.LocalDir) == "" {
			return fmt.Errorf("objstore: LOCAL_UPLOAD_DIR is required in local mode")
		}
	case ModeGCS:
		if strings.TrimSpace(c.Bucket) == "" {
			return fmt.Errorf("objstore: UPLOAD_GCS_BUCKET_NAME is required in gcs mode")
		}
	case ModeGCSEmulator:
		if strings.TrimSpace(c.Bucket) == "" {
			return fmt.Errorf("objstore: UPLOAD_GCS_BUCKET_NAME is required in gcs_emulator mode")
		}
		u, err := url.Parse(strings.TrimSpace(c.EmulatorHost))
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("objstore: invalid STORAGE_EMULATOR_HOST=%q; expected absolute URL like http://localhost:4443", c.EmulatorHost)
		}
	default:
		return fmt.Errorf("objstore: unsupported OBJECT_STORAGE_MODE=%q", c.Mode)
	}
	return nil
}
