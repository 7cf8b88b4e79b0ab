package bootstrap

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"os"

	"github.com/jt828/token-ledger/pkg/snowflake"
	snowflakeImpl "github.com/jt828/token-ledger/pkg/snowflake/implementation"
)

// InitializeSnowflake uses nodeID when it is set and otherwise derives one
// from the pod hostname.
func InitializeSnowflake(nodeID int64) (snowflake.Snowflake, error) {
	if nodeID < 0 {
		var err error
		if nodeID, err = PodNodeID(); err != nil {
			return nil, err
		}
	}
	return snowflakeImpl.NewSnowflake(nodeID)
}

func PodNodeID() (int64, error) {
	hostname := os.Getenv("HOSTNAME")
	if hostname == "" {
		return 0, fmt.Errorf("HOSTNAME is not set")
	}

	h := fnv.New64a()
	h.Write([]byte(hostname))
	nodeID := int64(binary.BigEndian.Uint64(h.Sum(nil)) % 1024)

	return nodeID, nil
}
