/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>

*/
// @title           Membership Gin API
// @version         1.0
// @description     Membership registration and approval API server

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the token returned by login
package main

import "github.com/mautops/membership-gin/cmd"

func main() {
	cmd.Execute()
}
