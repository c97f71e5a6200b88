package main

import (
	"edziennik-backend/cmd/edziennik-cli/commands"
	"edziennik-backend/lib/util/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
