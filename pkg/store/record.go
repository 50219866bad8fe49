package store

import (
	"errors"
	"fmt"
	"strings"
)

// 共享存储根目录下的记录文件名, 与原有 worker 脚本 source 的文件保持一致
const joinRecordFile = "k3s_config.conf"

// JoinRecord 是 worker 加入集群所需的 {masterIP, token} 对。
// 只有 control 节点在安装成功后写入, worker 只读。
type JoinRecord struct {
	MasterIP string
	Token    string
}

func (r *JoinRecord) Validate() error {
	if r == nil {
		return errors.New("join record is nil")
	}
	if strings.TrimSpace(r.MasterIP) == "" {
		return errors.New("join record has empty MASTER_IP")
	}
	if strings.TrimSpace(r.Token) == "" {
		return errors.New("join record has empty TOKEN")
	}
	return nil
}

// 序列化为 key=value 行, 值带双引号, 保持可被 shell source
func encodeRecord(r *JoinRecord) []byte {
	return []byte(fmt.Sprintf("MASTER_IP=%q\nTOKEN=%q\n", r.MasterIP, r.Token))
}

func parseRecord(data []byte) (*JoinRecord, error) {
	rec := &JoinRecord{}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("malformed record line %q", line)
		}
		value = strings.Trim(strings.TrimSpace(value), `"`)
		switch strings.TrimSpace(key) {
		case "MASTER_IP":
			rec.MasterIP = value
		case "TOKEN":
			rec.Token = value
		}
	}
	return rec, nil
}
