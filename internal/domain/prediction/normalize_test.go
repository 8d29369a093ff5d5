package prediction

import (
	"math/rand/v2"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestNormalize(t *testing.T) {
	Convey("Given the normalizer", t, func() {
		Convey("When the triple already sums to one", func() {
			h, d, a := Normalize(0.5, 0.3, 0.2)
			So([]float64{h, d, a}, ShouldResemble, []float64{50, 30, 20})
		})

		Convey("When rounding leaves a small shortfall", func() {
			h, d, a := Normalize(0.3334, 0.3333, 0.3333)
			Convey("Then it is accepted as is", func() {
				So([]float64{h, d, a}, ShouldResemble, []float64{33.3, 33.3, 33.3})
			})
		})

		Convey("When the shortfall is larger", func() {
			h, d, a := Normalize(0.6, 0.3, 0.05)
			Convey("Then the largest bucket absorbs it", func() {
				So([]float64{h, d, a}, ShouldResemble, []float64{65, 30, 5})
			})
		})

		Convey("When the two largest buckets tie", func() {
			h, d, a := Normalize(0.5, 0.5, 0.1)
			Convey("Then home absorbs the excess", func() {
				So([]float64{h, d, a}, ShouldResemble, []float64{40, 50, 10})
			})
		})

		Convey("When every input is zero", func() {
			h, d, a := Normalize(0, 0, 0)
			So([]float64{h, d, a}, ShouldResemble, []float64{33.4, 33.3, 33.3})
		})

		Convey("When inputs are out of range", func() {
			h, d, a := Normalize(1, 1, 1)
			Convey("Then clamping and rescaling still restore the total", func() {
				So(h+d+a, ShouldAlmostEqual, 100, 0.1)
				So(h, ShouldBeGreaterThanOrEqualTo, 0)
			})

			h, d, a = Normalize(-0.4, 0.7, 0.5)
			So(h, ShouldEqual, 0)
			So(h+d+a, ShouldAlmostEqual, 100, 0.1)
		})
	})
}

func TestNormalizeProperty(t *testing.T) {
	Convey("Given many random triples", t, func() {
		rng := rand.New(rand.NewPCG(7, 11))
		for i := 0; i < 20000; i++ {
			var h, d, a float64
			switch i % 3 {
			case 0:
				// distributions
				h, d = rng.Float64(), rng.Float64()
				if h+d > 1 {
					h, d = 1-h, 1-d
				}
				a = 1 - h - d
			case 1:
				// unnormalized scores
				h, d, a = rng.Float64(), rng.Float64(), rng.Float64()
			default:
				// wild inputs
				h, d, a = rng.Float64()*3-1, rng.Float64()*3-1, rng.Float64()*3-1
			}

			nh, nd, na := Normalize(h, d, a)
			total := nh + nd + na
			if total < 99.9-1e-6 || total > 100.1+1e-6 {
				So(total, ShouldBeBetweenOrEqual, 99.9, 100.1)
			}
			for _, v := range []float64{nh, nd, na} {
				if v < 0 || v > 100 {
					So(v, ShouldBeBetweenOrEqual, 0, 100)
				}
			}
		}
		So(true, ShouldBeTrue)
	})
}
