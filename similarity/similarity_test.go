package similarity

import (
	"bytes"
	"math"
	"testing"

	"github.com/carbocation/metacompare/bracken"
	"github.com/carbocation/metacompare/profile"
)

func tbl(cond bracken.Condition, pairs ...interface{}) bracken.Table {
	t := bracken.Table{Condition: cond}
	for i := 0; i < len(pairs); i += 2 {
		t.Records = append(t.Records, bracken.Record{Name: pairs[i].(string), TaxonomyID: int64(i + 1), TaxonomyLevel: "S", Fraction: pairs[i+1].(float64)})
	}
	return t
}

func TestCosine(t *testing.T) {
	for _, v := range []struct {
		A, B     []float64
		Expected float64
	}{
		{[]float64{0.6, 0.4}, []float64{0.6, 0.4}, 1},
		{[]float64{0.2, 0.3, 0.5}, []float64{0.4, 0.6, 1.0}, 1},
		{[]float64{1, 0}, []float64{0, 1}, 0},
		{[]float64{0.6, 0.4, 0}, []float64{0, 0, 1}, 0},
		{[]float64{0, 0}, []float64{0.5, 0.5}, 0},
		{[]float64{0, 0}, []float64{0, 0}, 0},
		{nil, nil, 0},
	} {
		if got := Cosine(v.A, v.B); math.Abs(got-v.Expected) > 1e-9 {
			t.Fatalf("Cosine(%v, %v) = %.12f, expected %.12f", v.A, v.B, got, v.Expected)
		}
	}
}

func TestL1(t *testing.T) {
	if got := L1([]float64{0.6, 0.4}, []float64{0.6, 0.4}); got != 0 {
		t.Fatalf("L1 of identical vectors = %f", got)
	}
	if got := L1([]float64{0.6, 0.4, 0}, []float64{0, 0.5, 0.5}); math.Abs(got-1.2) > 1e-9 {
		t.Fatalf("L1 = %f, expected 1.2", got)
	}
	if got := L1(nil, nil); got != 0 {
		t.Fatalf("L1 of empty vectors = %f", got)
	}
}

func TestComputeScenario(t *testing.T) {
	a := tbl(bracken.MetaG, "sp1", 0.6, "sp2", 0.4)
	b := tbl(bracken.MetaT, "sp2", 0.5, "sp3", 0.5)
	merged := profile.OuterJoin(a, b, profile.Summary{})

	vecA, vecB, names := Vectors(merged)
	if len(names) != 3 || names[0] != "sp1" || names[2] != "sp3" {
		t.Fatalf("Unexpected taxon order: %v", names)
	}
	if vecA[2] != 0 || vecB[0] != 0 {
		t.Fatalf("Absent fractions must be zero: %v %v", vecA, vecB)
	}

	res := Compute("G1", "T1", merged)

	// (0.4*0.5) / (sqrt(0.52) * sqrt(0.5))
	expected := 0.2 / (math.Sqrt(0.52) * math.Sqrt(0.5))
	if math.Abs(res.Cosine-expected) > 1e-9 {
		t.Fatalf("Cosine %f, expected %f", res.Cosine, expected)
	}
	if math.Abs(res.L1-1.2) > 1e-9 {
		t.Fatalf("L1 %f, expected 1.2", res.L1)
	}
}

func TestComputeEmptyTable(t *testing.T) {
	a := tbl(bracken.MetaG)
	b := tbl(bracken.MetaT, "sp2", 0.5, "sp3", 0.5)

	res := Compute("G1", "T1", profile.OuterJoin(a, b, profile.Summary{}))
	if res.Cosine != 0 {
		t.Fatalf("Expected 0 similarity against an empty table, got %f", res.Cosine)
	}
	if math.Abs(res.L1-1.0) > 1e-9 {
		t.Fatalf("L1 %f, expected 1.0", res.L1)
	}

	res = Compute("G1", "T1", profile.OuterJoin(tbl(bracken.MetaG), tbl(bracken.MetaT), profile.Summary{}))
	if res.Cosine != 0 || res.L1 != 0 {
		t.Fatalf("Expected zero scores for two empty tables, got %+v", res)
	}
}

func TestWriteLog(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteLog(&buf, Result{IDA: "SRR1", IDB: "SRR2", Cosine: 0.123456, L1: 1.2}); err != nil {
		t.Fatal(err)
	}

	expected := "Metagenomic ID: SRR1\n" +
		"Metatranscriptomic ID: SRR2\n" +
		"Cosine similarity: 0.1235\n" +
		"Difference score (Sum of Absolute Differences): 1.2000\n"
	if buf.String() != expected {
		t.Fatalf("Got:\n%s\nExpected:\n%s", buf.String(), expected)
	}
}
