// Command webfind resolves and inspects web element locators over WebDriver.
package main

import "github.com/devicelab-dev/webfind/pkg/cli"

func main() {
	cli.Execute()
}
