// Package xmongoq 以 MongoDB 集合作为 xprioq 的队列后端，每个队列一个集合。
//
// 文档结构：
//
//	{_id, body, attrs, sent_at, visible_at, receipt, deliveries}
//
// 拉取用 FindOneAndUpdate 按 visible_at 升序认领一条 visible_at ≤ now 的文档，
// 同时把 visible_at 推后一个可见性超时并写入新的 receipt；
// 删除按 receipt 进行，receipt 已被替换（消息重新投递）时返回 mqcore.ErrReceiptNotFound。
package xmongoq
