package cache

import "fmt"

// 规范标签
const (
	TagTasks     = "tasks"
	TagAnalytics = "analytics"
	TagStatic    = "static"
	TagAPI       = "api"
)

// UserTag user:<id>
func UserTag(userID any) string {
	return fmt.Sprintf("user:%v", userID)
}

// UserTags 用户相关数据
func UserTags(userID any) []string {
	return []string{UserTag(userID)}
}

// TaskTags 用户的任务列表
func TaskTags(userID any) []string {
	return []string{UserTag(userID), TagTasks}
}

// AnalyticsTags 用户的统计数据
func AnalyticsTags(userID any) []string {
	return []string{UserTag(userID), TagAnalytics}
}

// APITags 接口响应，userID 可选
func APITags(endpoint string, userID ...any) []string {
	tags := []string{TagAPI, TagAPI + ":" + endpoint}
	if len(userID) > 0 && userID[0] != nil {
		tags = append(tags, UserTag(userID[0]))
	}
	return tags
}

// StaticTags 静态数据（分类、配置等）
func StaticTags() []string {
	return []string{TagStatic}
}
