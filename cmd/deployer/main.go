// Command deployer drives the platform's Pulumi stacks and the operational
// tasks around them.
//
// Usage:
//
//	deployer preview --stack dev            Show pending changes
//	deployer up --stack prod --image-tag X  Check table schemas, then deploy
//	deployer outputs --stack dev            Print stack outputs
//	deployer check-schema --stack prod      Compare deployed table key schemas
//	deployer secret set chatbotApiKey --from-env CHATBOT_API_KEY
package main

import (
	"fmt"
	"os"

	"github.com/thoughtful-python/infra/internal/logging"
)

func main() {
	logger := logging.New(os.Stderr, logging.Component("deployer"))

	if err := newRootCmd(newApp(logger, os.Stdout)).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
