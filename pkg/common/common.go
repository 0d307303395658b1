package common

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"sync"

	"github.com/bwmarrin/snowflake"
)

const (
	ENABLED  = "enabled"
	DISABLED = "disabled"
)

var (
	idNode     *snowflake.Node
	idNodeOnce sync.Once
)

// UUIDint64 returns a cluster-unique int64 identifier.
func UUIDint64() int64 {
	idNodeOnce.Do(func() {
		var err error
		idNode, err = snowflake.NewNode(1)
		if err != nil {
			panic(err)
		}
	})
	return idNode.Generate().Int64()
}

// Sha256Hash returns the hex encoded sha256 digest of src.
func Sha256Hash(src string) string {
	sum := sha256.Sum256([]byte(src))
	return hex.EncodeToString(sum[:])
}

// FileExists reports whether path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// MustMkdir creates dir and parents, panicking on failure.
func MustMkdir(path string) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		panic(err)
	}
}
