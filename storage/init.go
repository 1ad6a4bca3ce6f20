package storage

import (
	"StaffOps/storage/database"
	"StaffOps/storage/mq"
	"StaffOps/storage/redis"
)

// Init 统一初始化 storage 层
func Init() error {
	if err := database.Init(); err != nil {
		return err
	}

	if err := redis.Init(); err != nil {
		return err
	}

	if err := mq.Init(); err != nil {
		return err
	}

	return nil
}
