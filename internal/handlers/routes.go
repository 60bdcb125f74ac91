package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/khaledamrr/ServiceProjectUpdated/internal/apperr"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/rpc"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/validation"
)

func (g *gateway) registerAuthRoutes(r *gin.Engine, user gin.HandlerFunc) {
	a := r.Group("/auth")
	throttle := RateLimit(g.AuthLimiter, g.Logger)

	a.POST("/register", throttle, func(c *gin.Context) {
		var req validation.RegisterRequest
		if err := validation.BindAndValidate(c, &req, g.v); err != nil {
			return
		}
		sess, err := g.Auth.Register(c.Request.Context(), req)
		g.reply(c, http.StatusCreated, "User registered successfully", sess, err)
	})

	a.POST("/login", throttle, func(c *gin.Context) {
		var req validation.LoginRequest
		if err := validation.BindAndValidate(c, &req, g.v); err != nil {
			return
		}
		sess, err := g.Auth.Login(c.Request.Context(), req)
		g.reply(c, http.StatusOK, "Login successful", sess, err)
	})

	a.GET("/profile", user, func(c *gin.Context) {
		u, err := g.Auth.Profile(c.Request.Context(), claimsOf(c).Subject)
		g.reply(c, http.StatusOK, "", u, err)
	})

	a.PUT("/change-password", user, func(c *gin.Context) {
		var req validation.ChangePasswordRequest
		if !g.bind(c, &req, func() { req.UserID = claimsOf(c).Subject }) {
			return
		}
		err := g.Auth.ChangePassword(c.Request.Context(), req)
		g.reply(c, http.StatusOK, "Password changed successfully", nil, err)
	})
}

func (g *gateway) registerUserRoutes(r *gin.Engine, user, admin gin.HandlerFunc) {
	u := r.Group("/users", user)

	u.GET("", admin, func(c *gin.Context) {
		list, err := g.Users.List(c.Request.Context())
		g.reply(c, http.StatusOK, "", list, err)
	})

	u.GET("/:id", func(c *gin.Context) {
		id := c.Param("id")
		if !g.owns(c, id) {
			return
		}
		p, err := g.Users.Get(c.Request.Context(), id)
		g.reply(c, http.StatusOK, "", p, err)
	})

	u.PUT("/:id", func(c *gin.Context) {
		id := c.Param("id")
		if !g.owns(c, id) {
			return
		}
		var req validation.UpdateUserRequest
		if !g.bind(c, &req, func() { req.ID = id }) {
			return
		}
		p, err := g.Users.Update(c.Request.Context(), req)
		g.reply(c, http.StatusOK, "User updated successfully", p, err)
	})

	u.DELETE("/:id", admin, func(c *gin.Context) {
		err := g.Users.Delete(c.Request.Context(), c.Param("id"))
		g.reply(c, http.StatusOK, "User deleted successfully", nil, err)
	})
}

func (g *gateway) registerCatalogRoutes(r *gin.Engine, user, admin gin.HandlerFunc) {
	// ?slug= looks a category up by slug instead of listing.
	r.GET("/categories", func(c *gin.Context) {
		ctx := c.Request.Context()
		if slug := c.Query("slug"); slug != "" {
			cat, err := g.Categories.GetBySlug(ctx, slug)
			g.reply(c, http.StatusOK, "", cat, err)
			return
		}
		includeInactive, _ := strconv.ParseBool(c.Query("includeInactive"))
		list, err := g.Categories.List(ctx, includeInactive)
		g.reply(c, http.StatusOK, "", list, err)
	})

	r.GET("/categories/:id", func(c *gin.Context) {
		cat, err := g.Categories.Get(c.Request.Context(), c.Param("id"))
		g.reply(c, http.StatusOK, "", cat, err)
	})

	r.POST("/categories", user, admin, func(c *gin.Context) {
		var req validation.CreateCategoryRequest
		if err := validation.BindAndValidate(c, &req, g.v); err != nil {
			return
		}
		cat, err := g.Categories.Create(c.Request.Context(), req)
		g.reply(c, http.StatusCreated, "Category created successfully", cat, err)
	})

	r.PUT("/categories/:id", user, admin, func(c *gin.Context) {
		var req validation.UpdateCategoryRequest
		if !g.bind(c, &req, func() { req.ID = c.Param("id") }) {
			return
		}
		cat, err := g.Categories.Update(c.Request.Context(), req)
		g.reply(c, http.StatusOK, "Category updated successfully", cat, err)
	})

	r.DELETE("/categories/:id", user, admin, func(c *gin.Context) {
		err := g.Categories.Delete(c.Request.Context(), c.Param("id"))
		g.reply(c, http.StatusOK, "Category deleted successfully", nil, err)
	})

	r.GET("/products", func(c *gin.Context) {
		list, err := g.Products.List(c.Request.Context(), c.Query("categoryId"))
		g.reply(c, http.StatusOK, "", list, err)
	})

	r.GET("/products/:id", func(c *gin.Context) {
		p, err := g.Products.Get(c.Request.Context(), c.Param("id"))
		g.reply(c, http.StatusOK, "", p, err)
	})

	r.POST("/products", user, admin, func(c *gin.Context) {
		var req validation.CreateProductRequest
		if err := validation.BindAndValidate(c, &req, g.v); err != nil {
			return
		}
		p, err := g.Products.Create(c.Request.Context(), req)
		g.reply(c, http.StatusCreated, "Product created successfully", p, err)
	})
}

func (g *gateway) registerOrderRoutes(r *gin.Engine, user, admin gin.HandlerFunc) {
	o := r.Group("/orders", user)

	o.POST("", func(c *gin.Context) {
		var req validation.CreateOrderRequest
		if !g.bind(c, &req, func() { req.UserID = claimsOf(c).Subject }) {
			return
		}
		order, err := g.Orders.Create(c.Request.Context(), req)
		g.reply(c, http.StatusCreated, "Order created successfully", order, err)
	})

	o.GET("", func(c *gin.Context) {
		list, err := g.Orders.ListByUser(c.Request.Context(), claimsOf(c).Subject)
		g.reply(c, http.StatusOK, "", list, err)
	})

	o.GET("/:id", func(c *gin.Context) {
		order, err := g.Orders.Get(c.Request.Context(), c.Param("id"))
		if err == nil && !g.owns(c, order.UserID) {
			return
		}
		g.reply(c, http.StatusOK, "", order, err)
	})

	o.PUT("/:id/status", admin, func(c *gin.Context) {
		var req validation.UpdateOrderStatusRequest
		if !g.bind(c, &req, func() { req.ID = c.Param("id") }) {
			return
		}
		order, err := g.Orders.UpdateStatus(c.Request.Context(), req.ID, req.Status)
		g.reply(c, http.StatusOK, "Order status updated", order, err)
	})

	// Manual correction of the payment link; checkout and the reconciler
	// normally set it.
	o.PUT("/:id/payment", admin, func(c *gin.Context) {
		var req validation.UpdateOrderPaymentRequest
		if !g.bind(c, &req, func() { req.ID = c.Param("id") }) {
			return
		}
		order, err := g.Orders.UpdatePayment(c.Request.Context(), req.ID, req.PaymentID, req.PaymentStatus)
		g.reply(c, http.StatusOK, "Order payment updated", order, err)
	})

	o.DELETE("/:id", admin, func(c *gin.Context) {
		err := g.Orders.Delete(c.Request.Context(), c.Param("id"))
		g.reply(c, http.StatusOK, "Order deleted successfully", nil, err)
	})

	o.POST("/:id/refund", admin, func(c *gin.Context) {
		out, err := g.Checkout.Refund(c.Request.Context(), c.Param("id"))
		if err != nil {
			g.fail(c, err)
			return
		}
		if !out.Refund.Success {
			rpc.WriteReply(c, http.StatusOK, rpc.Fail(out.Refund.FailureReason, out))
			return
		}
		rpc.WriteReply(c, http.StatusOK, rpc.OK("Refund processed successfully", out))
	})

	r.GET("/admin/orders", user, admin, func(c *gin.Context) {
		list, err := g.Orders.ListAll(c.Request.Context())
		g.reply(c, http.StatusOK, "", list, err)
	})

	// Partial refunds by payment id. The order is not touched.
	r.POST("/payments/refund", user, admin, func(c *gin.Context) {
		var req validation.RefundPaymentRequest
		if err := validation.BindAndValidate(c, &req, g.v); err != nil {
			return
		}
		res, err := g.Payments.RefundPayment(c.Request.Context(), req.PaymentID, req.Amount)
		if err != nil {
			g.fail(c, err)
			return
		}
		if !res.Success {
			rpc.WriteReply(c, http.StatusOK, rpc.Fail(res.FailureReason, res))
			return
		}
		rpc.WriteReply(c, http.StatusOK, rpc.OK("Refund processed successfully", res))
	})

	// Payment status is looked up by order so ownership can be checked.
	r.GET("/payments/:orderId", user, func(c *gin.Context) {
		ctx := c.Request.Context()
		order, err := g.Orders.Get(ctx, c.Param("orderId"))
		if err != nil {
			g.fail(c, err)
			return
		}
		if !g.owns(c, order.UserID) {
			return
		}
		view, err := g.Payments.GetPaymentStatus(ctx, order.ID)
		g.reply(c, http.StatusOK, "", view, err)
	})
}

// reply writes data with status, or err when it is non-nil.
func (g *gateway) reply(c *gin.Context, status int, message string, data any, err error) {
	if err != nil {
		g.fail(c, err)
		return
	}
	rpc.WriteReply(c, status, rpc.OK(message, data))
}

func (g *gateway) fail(c *gin.Context, err error) {
	rpc.WriteError(c, g.Logger.With("route", c.FullPath()), err)
}

// bind decodes the body into out, lets fill copy path and caller values in,
// then validates. It writes the 400 itself.
func (g *gateway) bind(c *gin.Context, out any, fill func()) bool {
	if err := c.ShouldBindJSON(out); err != nil {
		g.fail(c, apperr.Validation("invalid request body"))
		return false
	}
	if fill != nil {
		fill()
	}
	if err := g.v.Struct(out); err != nil {
		g.fail(c, &apperr.Error{Kind: apperr.KindValidation, Message: validation.Describe(err), Err: err})
		return false
	}
	return true
}

// owns writes a 403 unless the caller is userID or an admin.
func (g *gateway) owns(c *gin.Context, userID string) bool {
	if callerOwns(c, userID) {
		return true
	}
	g.fail(c, apperr.Forbidden("Access denied"))
	return false
}
