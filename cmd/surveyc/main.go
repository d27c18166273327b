// surveyc compiles survey designs and drives their navigation.
package main

import (
	"os"

	"github.com/qlarr-surveys/survey-engine/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
