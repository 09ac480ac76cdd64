package main

import (
	"task-manager-api/app"
)

// @title           Task Manager API
// @version         1.0
// @description     User accounts for the task manager: registration, email verification and sessions.

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	app.Run()
}
