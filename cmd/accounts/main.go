// @title                      Accounts API
// @version                    1.0
// @description                User registration, login and role-gated account management.
// @BasePath                   /
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
// @description                Type "Bearer" followed by a space and the access token.
package main

import "github.com/texresolve/accounts-api/internal/cli"

func main() {
	cli.Execute()
}
