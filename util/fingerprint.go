package util

import "github.com/dchest/siphash"

// 固定 key: 指纹只在进程内比较, 不需要抗碰撞的随机种子
const (
	fingerprintK0 = 0x0706050403020100
	fingerprintK1 = 0x0f0e0d0c0b0a0908
)

// Fingerprint 计算缓冲区内容的指纹, 迭代器用它发现自己存活期间底层缓冲区被改写。
func Fingerprint(buf []byte) uint64 {
	return siphash.Hash(fingerprintK0, fingerprintK1, buf) ^ uint64(len(buf))
}
