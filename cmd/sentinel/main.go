// Sentinel detects segregation-of-duties and threshold violations in access and
// transaction data and drives each violation through an approval workflow.
//
// Usage:
//
//	# Evaluate a batch of records against a rule file
//	sentinel evaluate --rules rules.yaml --data access.json
//
//	# Persist violations and open a workflow for each
//	sentinel evaluate --data access.json --save --create-workflows --tenant acme
//
//	# Act on a workflow
//	sentinel workflow transition <id> approve --actor alice
//
//	# Run the escalation scheduler with metrics and health endpoints
//	sentinel run --config /etc/sentinel/config.yaml
package main

import "os"

func main() {
	os.Exit(Execute())
}
