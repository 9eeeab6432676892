// Package sse streams Server-Sent Events to HTTP clients.
//
// A Hub owns the connected clients. Client ids are colon-separated, and
// broadcasts select recipients with a glob pattern, so a client watching
// an execution registers as "execution:<id>:<connection>" and receives
// everything broadcast to "execution:<id>:*".
//
//	hub := sse.NewHub(log)
//	go hub.Run()
//	router.GET("/events/:id", func(c *gin.Context) {
//	    sse.ServeSSE(hub, c.Writer, c.Request, "execution:"+c.Param("id")+":"+uuid.NewString())
//	})
//	hub.Broadcast("execution:abc:*", sse.Frame{Event: "node", Data: payload})
package sse
