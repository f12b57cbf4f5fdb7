package logic_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/alawein/maglogic/internal/logic"
	"github.com/alawein/maglogic/internal/mag"
)

var _ = Describe("Classifier", func() {
	var c logic.Classifier

	BeforeEach(func() {
		c = logic.DefaultClassifier()
	})

	DescribeTable("threshold rule on the x component",
		func(x float64, want logic.State) {
			Expect(c.Classify(mag.Vector3{x, 0, 0})).To(Equal(want))
		},
		Entry("strong positive reads 1", 0.9, logic.State1),
		Entry("strong negative reads 0", -0.9, logic.State0),
		Entry("weak magnetization is undefined", 0.1, logic.StateUndefined),
		Entry("weak negative is undefined", -0.1, logic.StateUndefined),
		Entry("exact boundary +0.5 is undefined (strict inequality)", 0.5, logic.StateUndefined),
		Entry("exact boundary -0.5 is undefined (strict inequality)", -0.5, logic.StateUndefined),
		Entry("just above the boundary reads 1", 0.5000001, logic.State1),
	)

	It("ignores the other components", func() {
		Expect(c.Classify(mag.Vector3{0.9, -0.9, 0.9})).To(Equal(logic.State1))
	})

	It("is a replaceable policy, not a fixed constant", func() {
		c = logic.Classifier{Component: 2, Threshold: 0.25}
		Expect(c.Classify(mag.Vector3{0, 0, 0.3})).To(Equal(logic.State1))
		Expect(c.Classify(mag.Vector3{0.9, 0, -0.3})).To(Equal(logic.State0))
		Expect(c.Classify(mag.Vector3{0.9, 0, 0.25})).To(Equal(logic.StateUndefined))
	})

	It("renders states as symbols", func() {
		Expect(logic.State1.String()).To(Equal("1"))
		Expect(logic.State0.String()).To(Equal("0"))
		Expect(logic.StateUndefined.String()).To(Equal("undefined"))
	})

	Describe("region classification", func() {
		It("averages the named region before thresholding", func() {
			g := &mag.FieldGrid{
				Nx: 2, Ny: 1, Nz: 1,
				CellSize: [3]float64{1e-9, 1e-9, 1e-9},
				ValueDim: 3,
				Data:     []float64{0.9, 0, 0, -0.9, 0, 0},
			}
			labels := []int{0, 1}

			state, ok := c.ClassifyRegion(g, labels, 0)
			Expect(ok).To(BeTrue())
			Expect(state).To(Equal(logic.State1))

			state, ok = c.ClassifyRegion(g, labels, 1)
			Expect(ok).To(BeTrue())
			Expect(state).To(Equal(logic.State0))

			_, ok = c.ClassifyRegion(g, labels, 9)
			Expect(ok).To(BeFalse())
		})
	})
})
