package common_test

import (
	"blogapi/common"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/sony/sonyflake"
)

var _ = Describe("Misc", func() {
	Describe("NextId", func() {
		It("should generate increasing ids", func() {
			worker := sonyflake.NewSonyflake(sonyflake.Settings{})
			id1 := common.NextId(worker)
			id2 := common.NextId(worker)
			Expect(id1 > 0).To(BeTrue())
			Expect(id2 > id1).To(BeTrue())
		})
	})
})
