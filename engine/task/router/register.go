package tkrouter

import (
	"github.com/gin-gonic/gin"
)

// Register mounts the task routes. commandMiddleware wraps the state changing
// lifecycle routes, typically with rate limiting and body size limits.
func Register(apiBase *gin.RouterGroup, commandMiddleware ...gin.HandlerFunc) {
	tasksGroup := apiBase.Group("/tasks")
	{
		commands := tasksGroup.Group("", commandMiddleware...)
		commands.POST("/proceed", proceedTask)
		commands.POST("/retry", retryStep)
		commands.POST("/handle-process", handleProcess)
		commands.POST("/restart", restartTask)
		commands.POST("/delete-with-files", deleteWithFiles)

		tasksGroup.POST("", createTask)
		tasksGroup.GET("", listTasks)
		tasksGroup.GET("/:uid", getTask)
		tasksGroup.PATCH("/:uid", updateTask)
		tasksGroup.DELETE("/:uid", deleteTask)
	}
	streamsGroup := apiBase.Group("/streams/tasks")
	{
		streamsGroup.GET("", streamAllTasks)
		streamsGroup.GET("/:file_id", streamFileTasks)
	}
}
