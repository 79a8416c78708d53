package utils

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// GetUUID 生成会话唯一标识，失败时退化为随机v4
func GetUUID() string {
	u1, err := uuid.NewUUID()
	if err != nil {
		logrus.Warnf("[utils] time based uuid failed: %v", err)
		return uuid.NewString()
	}
	return u1.String()
}
