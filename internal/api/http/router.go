package http

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func SetupRouter(roomController *RoomController, userController *UserController, followController *FollowController, allowedOrigins []string, jwtSecret string) *gin.Engine {
	router := gin.Default()

	config := cors.DefaultConfig()
	config.AllowOrigins = allowedOrigins
	config.AllowCredentials = true
	config.AllowHeaders = []string{
		"Authorization",
		"Content-Type",
		"Origin",
		"Accept",
	}
	config.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}
	router.Use(cors.New(config))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.Use(Identity(jwtSecret))

	if userController != nil {
		users := api.Group("/users")
		users.POST("", userController.CreateUser)
		users.GET("/:userID", userController.GetUser)
		users.PUT("/:userID", userController.UpdateUser)
	}

	if followController != nil {
		friends := api.Group("/users")
		friends.GET("/:userID/followers", followController.ListFollowers)
		friends.GET("/:userID/following", followController.ListFollowing)
		friends.GET("/:userID/following/:targetID", followController.CheckFollowing)
		friends.POST("/:userID/following", followController.Follow)
		friends.DELETE("/:userID/following/:targetID", followController.Unfollow)
	}

	if roomController != nil {
		rooms := api.Group("/rooms")
		rooms.POST("", RequireIdentity(), roomController.CreateRoom)
		rooms.GET("/open", roomController.ListOpenRooms)
		rooms.GET("/:roomID", roomController.GetRoom)
		rooms.PUT("/:roomID/close", roomController.CloseRoom)
		rooms.GET("/:roomID/users", roomController.ListParticipants)
		rooms.GET("/:roomID/chat", roomController.ChatHistory)
		rooms.DELETE("/:roomID/users/:userID", roomController.RemoveUser)
		rooms.GET("/:roomID/users/:userID/score", roomController.GetScore)
		rooms.PUT("/:roomID/users/:userID/score", roomController.UpdateScore)
		rooms.POST("/:roomID/total-scores", roomController.UpdateTotalScores)
		rooms.GET("/:roomID/ws", roomController.JoinRoom)
	}

	return router
}
