package server

import (
	auction "bikeshop-auctions/internal/auctionService"
	"bikeshop-auctions/internal/realtime"
	handler "bikeshop-auctions/services/auction/handler"

	"github.com/gin-gonic/gin"
)

// SetupRouter configures all Gin routes for the application
func SetupRouter(auctionService *auction.AuctionService, hub *realtime.Hub) *gin.Engine {
	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery())          // recover from panics
	router.Use(RequestLoggerMiddleware) // custom request logging
	router.Use(IdentityMiddleware)

	auctionHandler := handler.NewAuctionHandler(auctionService)

	auctions := router.Group("/auctions")
	{
		auctions.GET("", auctionHandler.ListAuctionsHandler)
		auctions.GET("/:id", auctionHandler.GetAuctionHandler)
		auctions.POST("", auctionHandler.CreateAuctionHandler)
		auctions.PATCH("/:id", auctionHandler.UpdateAuctionHandler)
		auctions.DELETE("/:id", auctionHandler.DeleteAuctionHandler)
		auctions.POST("/bid", auctionHandler.PlaceBidHandler)
	}

	users := router.Group("/users")
	{
		users.PATCH("/me/watchlist", auctionHandler.UpdateWatchlistHandler)
	}

	router.GET("/ws", realtime.ServeWS(hub))

	return router
}
