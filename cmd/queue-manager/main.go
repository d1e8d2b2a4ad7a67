// cmd/queue-manager/main.go
package main

func main() {
	Execute()
}
