package snowflake

import (
	"errors"
	"strconv"
	"sync"

	"github.com/bwmarrin/snowflake"
)

// Kind 标识 ID 的用途，拼在字符串形式的前缀上，方便日志排查
type Kind string

const (
	KindEvent   Kind = "evt"
	KindMessage Kind = "msg"
	KindSweep   Kind = "swp"
	KindBatch   Kind = "bat"
)

var (
	node *snowflake.Node
	once sync.Once

	errInvalidMachineID    = errors.New("invalid snowflake machine id")
	errInvalidDataCenterID = errors.New("invalid snowflake datacenter id")
	errGeneratorUninitial  = errors.New("snowflake generator is not initialized")
)

func Init(machineID, dataCenterID int64) error {
	var initErr error

	once.Do(func() {
		if machineID < 0 || machineID > 31 {
			initErr = errInvalidMachineID
			return
		}
		if dataCenterID < 0 || dataCenterID > 31 {
			initErr = errInvalidDataCenterID
			return
		}
		nodeID := (dataCenterID << 5) | machineID // datacenterID 和 machineID 都是 0~31

		var err error
		node, err = snowflake.NewNode(nodeID)
		if err != nil {
			initErr = err
			return
		}
	})

	return initErr
}

func NextID() (int64, error) {
	if node == nil {
		return 0, errGeneratorUninitial
	}

	return node.Generate().Int64(), nil
}

// NextString 生成带用途前缀的字符串 ID，例如 evt_1790000000000000000
func NextString(kind Kind) (string, error) {
	id, err := NextID()
	if err != nil {
		return "", err
	}
	return string(kind) + "_" + strconv.FormatInt(id, 10), nil
}
