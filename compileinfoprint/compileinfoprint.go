// compileinfoprint is imported by the metacompare commands for the side effect
// of printing their build provenance to os.Stderr at startup.
package compileinfoprint

import "github.com/carbocation/metacompare/compileinfo"

func init() {
	compileinfo.PrintToStdErr()
}
