// Package xredisq 基于 Redis 的可靠队列，实现 xprioq.Backend。
//
// 键布局（prefix 默认为 "xprioq"，队列名放在 hash tag 中以便 Cluster 下同槽）：
//
//	<prefix>:queues                 SET   已创建的队列名
//	<prefix>:q:{<name>}:ready       LIST  待投递的消息信封（LPUSH 入队，RPOP 出队）
//	<prefix>:q:{<name>}:inflight    HASH  receipt → 信封
//	<prefix>:q:{<name>}:leases      ZSET  receipt → 可见性截止时间（毫秒）
//
// 拉取由一个 Lua 脚本原子完成：先把租约已过期的消息放回 ready 队首，
// 再弹出至多 N 条并以新的 receipt 租出。删除同样是 Lua 脚本，receipt
// 不存在（已删除或已被重新投递）时返回 mqcore.ErrReceiptNotFound。
//
// 信封为 JSON：{"id","body","attrs","sent_at"}。
package xredisq
