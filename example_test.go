package pedigree_test

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/aretw0/pedigree"
	"github.com/aretw0/pedigree/pkg/core"
	"github.com/aretw0/pedigree/pkg/proband"
)

const legacyDoc = `{"persons":[{"id":0,"firstName":"Ada","sex":"female"},{"id":1,"firstName":"George","sex":"male"},{"id":2,"sex":"f"}],"relationships":[{"id":3,"partners":[1,2],"children":[0]}],"settings":{"zoom":1.5}}`

// Example_basic saves a document in a gitless directory and lists its versions.
func Example_basic() {
	tmpDir, err := os.MkdirTemp("", "pedigree-example-*")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	s, err := pedigree.New(tmpDir,
		pedigree.WithAutoInit(true),
		pedigree.WithVersioning(false),
		pedigree.WithSnapshots(false),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer s.Close()

	ctx := context.Background()

	// An empty store reports that there is nothing to load.
	if err := s.Engine.Load(ctx); errors.Is(err, core.ErrNoDocument) {
		fmt.Println("no document yet")
	}

	// Older documents are migrated when loaded.
	if err := s.Engine.LoadText(ctx, legacyDoc, pedigree.LoadOptions{}); err != nil {
		log.Fatal(err)
	}
	if err := s.Engine.SaveAndWait(ctx); err != nil {
		log.Fatal(err)
	}

	versions, err := s.Engine.Versions(ctx)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("versions: %d\n", len(versions))
	// Output:
	// no document yet
	// versions: 1
}

// ExampleWithSubjectSource reconciles the proband with a patient record.
func ExampleWithSubjectSource() {
	patient := proband.StaticSource{FirstName: "Ada", LastName: "Lovelace", Gender: core.GenderFemale}

	s, err := pedigree.New("",
		pedigree.WithAdapter(pedigree.AdapterMemory),
		pedigree.WithSubjectSource(patient),
		pedigree.WithSnapshots(false),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer s.Close()

	if err := s.Engine.LoadText(context.Background(), legacyDoc, pedigree.LoadOptions{}); err != nil {
		log.Fatal(err)
	}

	p, _ := s.Graph.Graph().Person(core.ProbandID)
	fmt.Println(p.DisplayName())
	// Output:
	// Ada Lovelace
}
