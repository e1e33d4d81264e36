// Command interviewer runs voice interviews.
//
//	interviewer run -f interview.yaml          one interview on the configured room
//	interviewer serve -f interview.yaml -a :8080  control API for many sessions
//
// Credentials come from the environment or a .env file.
package main

import "os"

func main() {
	Run(os.Args[1:])
}
