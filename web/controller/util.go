package controller

import (
	"net/http"

	"lottery/logger"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
)

type Msg struct {
	Success bool   `json:"success"`
	Msg     string `json:"msg"`
	Obj     any    `json:"obj"`
}

func writeJSON(c *gin.Context, code int, m Msg) {
	data, err := json.Marshal(m)
	if err != nil {
		logger.Warning("encode response failed:", err)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	c.Data(code, "application/json; charset=utf-8", data)
}

func jsonMsg(c *gin.Context, msg string, err error) {
	jsonMsgObj(c, msg, nil, err)
}

func jsonObj(c *gin.Context, obj any, err error) {
	jsonMsgObj(c, "", obj, err)
}

func jsonMsgObj(c *gin.Context, msg string, obj any, err error) {
	m := Msg{Obj: obj}
	if err == nil {
		m.Success = true
		m.Msg = msg
	} else {
		m.Msg = err.Error()
		if msg != "" {
			m.Msg = msg + ": " + err.Error()
		}
		logger.Warning(msg, err)
	}
	writeJSON(c, http.StatusOK, m)
}

func pureJsonMsg(c *gin.Context, statusCode int, success bool, msg string) {
	writeJSON(c, statusCode, Msg{Success: success, Msg: msg})
}
