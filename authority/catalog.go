package authority

import "sort"

// user management
const (
	AddUser            = "agregar_usuario"
	ListUsers          = "obtener_usuarios"
	GetUser            = "obtener_usuario_id"
	EditUser           = "editar_usuario"
	DeactivateUser     = "inactivar_usuario"
	AssignUserRoles    = "asignar_roles_usuario"
	AddUserRoles       = "agregar_roles_usuario"
	RemoveUserRoles    = "remover_roles_usuario"
	RemoveAllUserRoles = "remover_todos_roles_usuario"
	GetUserPermissions = "obtener_privilegios_usuario"
)

// role management
const (
	AddRole               = "agregar_rol"
	ListRoles             = "obtener_roles"
	GetRole               = "obtener_rol_id"
	EditRole              = "editar_rol"
	DeactivateRole        = "inactivar_rol"
	ActivateRole          = "activar_rol"
	AssignRolePermissions = "asignar_privilegios_a_rol"
	RemoveRolePermissions = "remover_privilegios_a_rol"
	GetRolePermissions    = "obtener_privilegios_por_rol"
)

// posts
const (
	AddPost         = "agregar_post"
	ListPosts       = "obtener_posts"
	GetPost         = "obtener_post_id"
	ListAuthorPosts = "obtener_posts_usuario"
	EditPost        = "editar_post"
	DeletePost      = "eliminar_post"
	PublishPost     = "publicar_post"
	UnpublishPost   = "despublicar_post"
)

// comments
const (
	AddComment         = "agregar_comentario"
	ListComments       = "obtener_comentarios"
	GetComment         = "obtener_comentario_id"
	ListPostComments   = "obtener_comentarios_post"
	ListAuthorComments = "obtener_comentarios_usuario"
	EditComment        = "editar_comentario"
	DeleteComment      = "eliminar_comentario"
	ModerateComment    = "moderar_comentario"
)

// system
const (
	Login    = "login"
	Register = "register"
	Whoami   = "ver_me"
	Health   = "ver_health"
)

type Definition struct {
	ID          string `json:"id"`
	Domain      string `json:"domain"`
	Description string `json:"description"`
}

var catalog = map[string]Definition{
	AddUser:            {ID: AddUser, Domain: "users", Description: "Create users"},
	ListUsers:          {ID: ListUsers, Domain: "users", Description: "List active users"},
	GetUser:            {ID: GetUser, Domain: "users", Description: "Get a user by id"},
	EditUser:           {ID: EditUser, Domain: "users", Description: "Edit users"},
	DeactivateUser:     {ID: DeactivateUser, Domain: "users", Description: "Deactivate users"},
	AssignUserRoles:    {ID: AssignUserRoles, Domain: "users", Description: "Replace the roles of a user"},
	AddUserRoles:       {ID: AddUserRoles, Domain: "users", Description: "Add roles to a user"},
	RemoveUserRoles:    {ID: RemoveUserRoles, Domain: "users", Description: "Remove some roles from a user"},
	RemoveAllUserRoles: {ID: RemoveAllUserRoles, Domain: "users", Description: "Remove all roles from a user"},
	GetUserPermissions: {ID: GetUserPermissions, Domain: "users", Description: "Get the effective permissions of a user"},

	AddRole:               {ID: AddRole, Domain: "roles", Description: "Create roles"},
	ListRoles:             {ID: ListRoles, Domain: "roles", Description: "List active roles"},
	GetRole:               {ID: GetRole, Domain: "roles", Description: "Get a role by id"},
	EditRole:              {ID: EditRole, Domain: "roles", Description: "Edit roles"},
	DeactivateRole:        {ID: DeactivateRole, Domain: "roles", Description: "Deactivate roles"},
	ActivateRole:          {ID: ActivateRole, Domain: "roles", Description: "Activate roles"},
	AssignRolePermissions: {ID: AssignRolePermissions, Domain: "roles", Description: "Assign permissions to a role"},
	RemoveRolePermissions: {ID: RemoveRolePermissions, Domain: "roles", Description: "Remove permissions from a role"},
	GetRolePermissions:    {ID: GetRolePermissions, Domain: "roles", Description: "Get the permissions of a role"},

	AddPost:         {ID: AddPost, Domain: "posts", Description: "Create posts"},
	ListPosts:       {ID: ListPosts, Domain: "posts", Description: "List posts"},
	GetPost:         {ID: GetPost, Domain: "posts", Description: "Get a post by id"},
	ListAuthorPosts: {ID: ListAuthorPosts, Domain: "posts", Description: "List the posts of a user"},
	EditPost:        {ID: EditPost, Domain: "posts", Description: "Edit posts"},
	DeletePost:      {ID: DeletePost, Domain: "posts", Description: "Delete posts"},
	PublishPost:     {ID: PublishPost, Domain: "posts", Description: "Publish posts"},
	UnpublishPost:   {ID: UnpublishPost, Domain: "posts", Description: "Unpublish posts"},

	AddComment:         {ID: AddComment, Domain: "comments", Description: "Create comments"},
	ListComments:       {ID: ListComments, Domain: "comments", Description: "List comments"},
	GetComment:         {ID: GetComment, Domain: "comments", Description: "Get a comment by id"},
	ListPostComments:   {ID: ListPostComments, Domain: "comments", Description: "List the comments of a post"},
	ListAuthorComments: {ID: ListAuthorComments, Domain: "comments", Description: "List the comments of a user"},
	EditComment:        {ID: EditComment, Domain: "comments", Description: "Edit comments"},
	DeleteComment:      {ID: DeleteComment, Domain: "comments", Description: "Delete comments"},
	ModerateComment:    {ID: ModerateComment, Domain: "comments", Description: "Moderate comments"},

	Login:    {ID: Login, Domain: "system", Description: "Log in"},
	Register: {ID: Register, Domain: "system", Description: "Register"},
	Whoami:   {ID: Whoami, Domain: "system", Description: "View the current session"},
	Health:   {ID: Health, Domain: "system", Description: "View service health"},
}

// IsKnown reports whether perm belongs to the catalog.
func IsKnown(perm string) bool {
	_, ok := catalog[perm]
	return ok
}

// All returns every permission of the catalog, sorted.
func All() Permissions {
	perms := make(Permissions, 0, len(catalog))
	for id := range catalog {
		perms = append(perms, id)
	}
	sort.Strings(perms)
	return perms
}

// Definitions returns the catalog ordered by domain and id.
func Definitions() []Definition {
	defs := make([]Definition, 0, len(catalog))
	for _, d := range catalog {
		defs = append(defs, d)
	}
	sort.Slice(defs, func(i, j int) bool {
		if defs[i].Domain != defs[j].Domain {
			return defs[i].Domain < defs[j].Domain
		}
		return defs[i].ID < defs[j].ID
	})
	return defs
}
