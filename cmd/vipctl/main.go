package main

import "github.com/dmitrijs2005/vipkeeper/internal/admin"

func main() {
	admin.Execute()
}
