package api

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mautops/membership-gin/internal/apperror"
	"github.com/mautops/membership-gin/internal/utils"
)

// pathID 读取并校验路径中的记录 ID
func pathID(c *gin.Context, name string) (string, error) {
	id := c.Param(name)
	if err := utils.ValidateID(id); err != nil {
		return "", apperror.NewFieldValidation(name, err.Error())
	}
	return id, nil
}

// queryInt 读取整数查询参数,缺省或非法时返回 0,由服务层取默认值
func queryInt(c *gin.Context, names ...string) int {
	for _, name := range names {
		if raw := c.Query(name); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return 0
			}
			return n
		}
	}
	return 0
}

// pageParams 读取分页参数,page_size 与 pageSize 均可
func pageParams(c *gin.Context) (int, int) {
	return queryInt(c, "page"), queryInt(c, "pageSize", "page_size")
}
