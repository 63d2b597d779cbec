package router

import (
	"sort"

	"github.com/gin-gonic/gin"
)

// Module 各业务模块在 API 前缀下挂载自己的路由
type Module interface{ Mount(*gin.RouterGroup) }

// 可选：实现该接口可控制挂载顺序（数值越小越先挂）
// 不实现则默认 100
type prioritizer interface{ Priority() int }

// MountAll 按优先级挂载模块
func MountAll(api *gin.RouterGroup, mods ...Module) {
	mods = append([]Module(nil), mods...)
	sort.SliceStable(mods, func(i, j int) bool {
		return priorityOf(mods[i]) < priorityOf(mods[j])
	})
	for _, m := range mods {
		m.Mount(api)
	}
}

func priorityOf(v any) int {
	if p, ok := v.(prioritizer); ok {
		return p.Priority()
	}
	return 100
}
