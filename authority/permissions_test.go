package authority_test

import (
	"blogapi/authority"
	"testing"

	. "github.com/onsi/gomega"
)

func TestHasRole(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should work correctly", func(t *testing.T) {
		var c authority.Permissions
		Expect(c.HasRole("aaa")).To(BeFalse())

		c = authority.Permissions{}
		Expect(c.HasRole("aaa")).To(BeFalse())

		c = authority.Permissions{"bbb", "ccc"}
		Expect(c.HasRole("aaa")).To(BeFalse())
		Expect(c.HasRole("ccc")).To(BeTrue())
		Expect(c.HasRole("CCC")).To(BeTrue())
	})
}

func TestHasAny(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should be satisfied by any one of required permissions", func(t *testing.T) {
		c := authority.Permissions{authority.EditPost}
		Expect(c.HasAny(authority.AddPost, authority.EditPost)).To(BeTrue())
		Expect(c.HasAny(authority.AddPost, authority.DeletePost)).To(BeFalse())
	})

	t.Run("should always be satisfied when nothing is required", func(t *testing.T) {
		Expect(authority.Permissions{}.HasAny()).To(BeTrue())
		Expect(authority.Permissions(nil).HasAny()).To(BeTrue())
	})

	t.Run("unknown permission is never granted", func(t *testing.T) {
		c := authority.Permissions{authority.AddPost}
		Expect(c.HasAny("no_such_permission")).To(BeFalse())
	})
}

func TestNormalize(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should collapse duplicates and sort", func(t *testing.T) {
		c := authority.Permissions{"b", " a", "b", "", "a "}
		Expect(c.Normalize()).To(Equal(authority.Permissions{"a", "b"}))
		Expect(authority.Permissions(nil).Normalize()).To(Equal(authority.Permissions{}))
	})
}

func TestValidate(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should reject permissions outside the catalog", func(t *testing.T) {
		Expect(authority.Permissions{authority.AddRole, authority.Login}.Validate()).To(BeNil())

		err := authority.Permissions{authority.AddRole, "foo", "bar"}.Validate()
		Expect(err).To(Equal(&authority.ErrUnknownPermissions{Permissions: []string{"foo", "bar"}}))
		Expect(err.Error()).To(Equal("unknown permissions: foo, bar"))
	})
}

func TestPermissionsColumn(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should store as json array", func(t *testing.T) {
		v, err := authority.Permissions{"a", "b"}.Value()
		Expect(err).To(BeNil())
		Expect(v).To(Equal(`["a","b"]`))

		v, err = authority.Permissions(nil).Value()
		Expect(err).To(BeNil())
		Expect(v).To(Equal(`[]`))
	})

	t.Run("should scan from string, bytes and null", func(t *testing.T) {
		var c authority.Permissions
		Expect(c.Scan(`["x","y"]`)).To(BeNil())
		Expect(c).To(Equal(authority.Permissions{"x", "y"}))

		Expect(c.Scan([]byte(`["z"]`))).To(BeNil())
		Expect(c).To(Equal(authority.Permissions{"z"}))

		Expect(c.Scan(nil)).To(BeNil())
		Expect(c).To(Equal(authority.Permissions{}))

		Expect(c.Scan(123)).ToNot(BeNil())
		Expect(c.Scan("not json")).ToNot(BeNil())
	})
}
