package utils

import (
	"strconv"
	"strings"
	"testing"
)

func TestGenerateMemberNo(t *testing.T) {
	for i := 0; i < 100; i++ {
		no := GenerateMemberNo()
		if !strings.HasPrefix(no, "GM") {
			t.Fatalf("会员号应以GM开头: %s", no)
		}
		if len(no) != 10 {
			t.Fatalf("会员号应为GM加8位数字: %s", no)
		}
		if _, err := strconv.Atoi(no[2:]); err != nil {
			t.Fatalf("GM后应为纯数字: %s", no)
		}
	}
}
