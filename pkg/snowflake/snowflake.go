package snowflake

import (
	"errors"
	"strconv"

	sf "github.com/bwmarrin/snowflake"
)

var node *sf.Node

// Init 初始化雪花节点，machineID 取 [0,1023]
func Init(machineID int64) (err error) {
	node, err = sf.NewNode(machineID)
	return
}

// GetID 生成一个全局唯一ID
func GetID() (uint64, error) {
	if node == nil {
		return 0, errors.New("snowflake not initialized")
	}
	return uint64(node.Generate().Int64()), nil
}

// GetIDString 生成字符串形式的ID（任务记录ID走这个，前端不丢精度）
func GetIDString() (string, error) {
	id, err := GetID()
	if err != nil {
		return "", err
	}
	return strconv.FormatUint(id, 10), nil
}
