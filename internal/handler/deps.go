package handler

import (
	"flipside/internal/app/auth"
	"flipside/internal/app/chat"
	"flipside/internal/app/customer"
	"flipside/internal/app/user"
	"flipside/internal/configs"
)

// AppDeps holds everything the HTTP layer calls into.
type AppDeps struct {
	Config    *configs.AppConfig
	Kinds     *user.Kinds
	Auth      *auth.Service
	Customers *customer.Service
	History   *chat.History
	Manager   *chat.Manager
}
