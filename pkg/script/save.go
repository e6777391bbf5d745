package script

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// SaveScript renders the engine's persistent state as a loadable script:
// #set lines for globals, #export markers, and a #def line per macro.
func (e *Engine) SaveScript() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("; written by gofugue %s on %s\n",
		Version, e.now().Format(time.RFC3339)))
	for _, name := range e.Vars.GlobalNames() {
		v, _ := e.Vars.Get(name)
		sb.WriteString("#set " + name + "=" + v.Text() + "\n")
		if e.Vars.IsExported(name) {
			sb.WriteString("#export " + name + "\n")
		}
	}
	for _, m := range e.Macros() {
		sb.WriteString(m.defString() + "\n")
	}
	return sb.String()
}

func (e *Engine) cmdSave(rest string) CommandResult {
	path := strings.TrimSpace(e.Substitute(rest))
	if path == "" {
		return errMsg("#save: usage is #save <path>")
	}
	if err := os.WriteFile(path, []byte(e.SaveScript()), 0o644); err != nil {
		return errMsg("#save: %v", err)
	}
	return okMsg("saved %d variables and %d macros to %s",
		len(e.Vars.GlobalNames()), len(e.macros), path)
}
