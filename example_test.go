package onramp_test

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/aretw0/onramp"
	"github.com/aretw0/onramp/pkg/domain"
	"github.com/aretw0/onramp/pkg/registry"
)

// ExampleNew_customProtocol walks a two-step protocol defined in code.
func ExampleNew_customProtocol() {
	reg, err := registry.New(
		domain.StepDefinition{ID: "hello", Title: "Hello", NarrativeTemplate: "Welcome aboard."},
		domain.StepDefinition{ID: "done", Title: "Done", RequiresPriorStep: "hello", NarrativeTemplate: "All set."},
	)
	if err != nil {
		log.Fatal(err)
	}

	eng, err := onramp.New("example-salt", onramp.WithRegistry(reg))
	if err != nil {
		log.Fatal(err)
	}
	ctx := context.Background()

	// Jumping ahead is refused, with a hint.
	p, err := eng.Advance(ctx, "42", "done")
	fmt.Println(errors.Is(err, domain.ErrStepLocked), p.NextStepHint)

	for i := 0; i < 3; i++ {
		p, _ = eng.Advance(ctx, "42", domain.CommandNext)
		fmt.Printf("%q %s terminal=%v\n", p.StepID, p.Narrative, p.Terminal)
	}

	// Output:
	// true hello
	// "hello" Welcome aboard. terminal=false
	// "done" All set. terminal=true
	// "" Protocol complete. All steps have been executed. terminal=true
}
