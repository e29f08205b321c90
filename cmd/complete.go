package cmd

import (
	"flag"

	"github.com/etnz/holdings"
	"github.com/etnz/holdings/docs"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

// predictions of flag values, by flag name. Other flags predict something.
var predictions = map[string]complete.Predictor{
	"store":     predict.Set{"json", "sqlite"},
	"data":      predict.Dirs("*"),
	"market":    predict.Files("*.json"),
	"matching":  predict.Set{"fifo", "lifo"},
	"retention": predict.Set{"keep", "remove"},
	"log-level": predict.Set{"debug", "info", "warn", "error"},
	"rule":      predict.Set{"fifo", "lifo", "specific"},
	"f":         fields(),
}

func fields() predict.Set {
	var res predict.Set
	for f := holdings.FieldSector; f <= holdings.FieldLotNote; f++ {
		res = append(res, f.String())
	}
	return res
}

// flagsOf returns the flag predictions of f.
func flagsOf(f *flag.FlagSet) map[string]complete.Predictor {
	res := make(map[string]complete.Predictor)
	f.VisitAll(func(fl *flag.Flag) {
		p, ok := predictions[fl.Name]
		switch {
		case ok:
			res[fl.Name] = p
		case isBool(fl):
			res[fl.Name] = predict.Nothing
		default:
			res[fl.Name] = predict.Something
		}
	})
	return res
}

func isBool(fl *flag.Flag) bool {
	b, ok := fl.Value.(interface{ IsBoolFlag() bool })
	return ok && b.IsBoolFlag()
}

// Completion returns the shell completion of the application, global is the
// flag set holding the global flags.
func Completion(global *flag.FlagSet) *complete.Command {
	root := &complete.Command{
		Sub:   make(map[string]*complete.Command),
		Flags: flagsOf(global),
	}
	for _, e := range Commands {
		f := flag.NewFlagSet(e.Command.Name(), flag.ContinueOnError)
		e.Command.SetFlags(f)
		root.Sub[e.Command.Name()] = &complete.Command{Flags: flagsOf(f)}
	}
	if all, err := docs.All(); err == nil {
		root.Sub["topic"].Args = predict.Set(all)
	}
	return root
}

// Complete runs the shell completion when the program is invoked by the shell
// for it, and exits. It returns otherwise.
func Complete(name string, global *flag.FlagSet) {
	Completion(global).Complete(name)
}
