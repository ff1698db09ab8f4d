package utils

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// RandomInt32 生成一个安全的随机32位整数
func RandomInt32() int32 {
	var num int32
	err := binary.Read(rand.Reader, binary.BigEndian, &num)
	if err != nil {
		panic("generate random int32 failed")
	}

	return num
}

// GenerateMemberNo 生成会员号：GM前缀加8位随机数字
func GenerateMemberNo() string {
	n := RandomInt32()
	if n < 0 {
		n = -n
	}
	return fmt.Sprintf("GM%08d", n%100000000)
}
