package common_test

import (
	"blogapi/common"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
)

var _ = Describe("Logutils", func() {
	AfterEach(func() {
		common.ConfigureLogger("info", false)
	})

	Describe("ConfigureLogger", func() {
		It("should use json formatter in release mode", func() {
			common.ConfigureLogger("debug", true)
			Expect(logrus.StandardLogger().Formatter).To(BeAssignableToTypeOf(&logrus.JSONFormatter{}))
			Expect(logrus.GetLevel()).To(Equal(logrus.DebugLevel))
		})
		It("should keep current level when level is unknown", func() {
			common.ConfigureLogger("warn", false)
			common.ConfigureLogger("verbose", false)
			Expect(logrus.StandardLogger().Formatter).To(BeAssignableToTypeOf(&logrus.TextFormatter{}))
			Expect(logrus.GetLevel()).To(Equal(logrus.WarnLevel))
		})
	})

	Describe("DefaultFieldsHook", func() {
		It("should stamp service fields", func() {
			e := logrus.NewEntry(logrus.StandardLogger())
			Expect((&common.DefaultFieldsHook{}).Fire(e)).To(BeNil())
			Expect(e.Data["service"]).To(Equal("blogapi"))
			Expect(e.Data).To(HaveKey("instance"))
		})
	})
})
