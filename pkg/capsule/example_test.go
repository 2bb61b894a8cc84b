package capsule_test

import (
	"context"
	"fmt"
	"log"
	"regexp"

	"github.com/stasisproject/stasis/pkg/capsule"
	"github.com/stasisproject/stasis/pkg/providers"
)

// ExampleEngine_Encode demonstrates a plain-value round trip.
func ExampleEngine_Encode() {
	engine := providers.NewDefaultEngine(capsule.EngineConfig{}, nil)
	ctx := context.Background()

	value := map[string]any{
		"user":  "ada",
		"items": []any{"boots", "lamp"},
	}

	payload, _, err := engine.Encode(ctx, value, capsule.Options{})
	if err != nil {
		log.Fatal(err)
	}

	decoded, _, err := engine.Decode(ctx, payload, capsule.Options{})
	if err != nil {
		log.Fatal(err)
	}

	m := decoded.(map[string]any)
	fmt.Println(m["user"])
	fmt.Println(len(m["items"].([]any)))
	// Output:
	// ada
	// 2
}

// ExampleEngine_Describe shows the dry-run dispatch report.
func ExampleEngine_Describe() {
	engine := providers.NewDefaultEngine(capsule.EngineConfig{}, nil)

	desc := engine.Describe(regexp.MustCompile(`^cap-[0-9]+$`))
	fmt.Println(desc.WouldUse)
	// Output: regexp.pattern
}

// ExampleEngine_Encode_lenient shows placeholder substitution for a
// value no provider can capture.
func ExampleEngine_Encode_lenient() {
	engine := providers.NewDefaultEngine(capsule.EngineConfig{}, nil)
	ctx := context.Background()

	value := map[string]any{
		"name":   "job-42",
		"notify": make(chan struct{}), // unbuffered, uncapturable
	}

	payload, warnings, err := engine.Encode(ctx, value, capsule.Options{})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(len(warnings))
	fmt.Println(len(payload) > 0)
	// Output:
	// 1
	// true
}
