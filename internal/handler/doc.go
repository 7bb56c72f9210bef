// Package handler 按业务域划分 HTTP 处理器，子包分别为服务间接口与管理端接口
//
// 本文件让 `swag init -g cmd/api-gateway/main.go --dir ./,./internal/handler` 把
// internal/handler 识别为有效包，生成的 docs 包不入库
package handler
