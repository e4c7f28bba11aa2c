// Package migrations 内嵌集合与会话事件表的建表脚本，
// 按文件名中的序号依次执行。
package migrations

import "embed"

// Files 暴露所有 SQL 迁移文件。
//
//go:embed *.sql
var Files embed.FS
